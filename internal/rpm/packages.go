package rpm

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	lru "github.com/hashicorp/golang-lru/v2"
	"go.trai.ch/zerr"
)

const (
	// DefaultBinary is the rpm executable looked up on PATH.
	DefaultBinary = "rpm"

	// DefaultDBDir is where Azure Linux keeps the rpm database.
	DefaultDBDir = "/var/lib/rpm"

	listQueryFormat = "%{NAME}\t%{EPOCHNUM}\t%{VERSION}\t%{RELEASE}\t%{ARCH}\t%{SIZE}\n"
	nameQueryFormat = "%{NAME}\n"

	noRequiresPrefix = "no package requires"
)

// Options configures a Client.
type Options struct {
	Binary         string        // rpm executable, defaults to DefaultBinary
	DBPath         string        // passed as --dbpath when set
	QueryTimeout   time.Duration // per-invocation timeout, zero disables it
	Retries        int           // attempts for transient failures, minimum 1
	RetryDelay     time.Duration // initial backoff between attempts
	ExpandProvides bool          // also follow every capability a package provides
	CacheSize      int           // capability lookups kept in memory
	Logger         *log.Logger
}

// Client queries the host rpm database. It is safe for concurrent use.
type Client struct {
	runner Runner
	opts   Options
	cache  *lru.Cache[string, []string]
	logger *log.Logger
}

// NewClient creates a Client that executes rpm through runner.
func NewClient(runner Runner, opts Options) (*Client, error) {
	if runner == nil {
		runner = ExecRunner{}
	}
	if opts.Binary == "" {
		opts.Binary = DefaultBinary
	}
	if opts.Retries < 1 {
		opts.Retries = 1
	}
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = 500 * time.Millisecond
	}
	if opts.CacheSize <= 0 {
		opts.CacheSize = 4096
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}

	cache, err := lru.New[string, []string](opts.CacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create capability cache: %w", err)
	}

	return &Client{runner: runner, opts: opts, cache: cache, logger: logger}, nil
}

// ListInstalled returns every package in the rpm database.
func (c *Client) ListInstalled(ctx context.Context) ([]Package, error) {
	stdout, err := c.query(ctx, "-qa", "--qf", listQueryFormat)
	if err != nil {
		return nil, zerr.Wrap(err, "failed to list installed packages")
	}
	return parsePackageList(stdout)
}

// DirectDependents returns the names of installed packages that directly
// require name. An empty result means nothing requires it; a failed query is
// always reported as an error.
func (c *Client) DirectDependents(ctx context.Context, name string) ([]string, error) {
	names, err := c.whatRequires(ctx, name)
	if err != nil {
		return nil, err
	}
	if !c.opts.ExpandProvides {
		return names, nil
	}

	caps, err := c.provides(ctx, name)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]struct{}, len(names))
	for _, n := range names {
		seen[n] = struct{}{}
	}
	for _, capability := range caps {
		if capability == name {
			continue
		}
		deps, ok := c.cache.Get(capability)
		if !ok {
			deps, err = c.whatRequires(ctx, capability)
			if err != nil {
				return nil, err
			}
			c.cache.Add(capability, deps)
		}
		for _, d := range deps {
			seen[d] = struct{}{}
		}
	}

	if len(seen) == 0 {
		return nil, nil
	}
	out := make([]string, 0, len(seen))
	for n := range seen {
		out = append(out, n)
	}
	slices.Sort(out)
	return out, nil
}

// whatRequires runs rpm -q --whatrequires for a single capability.
func (c *Client) whatRequires(ctx context.Context, capability string) ([]string, error) {
	stdout, err := c.query(ctx, "-q", "--whatrequires", capability, "--qf", nameQueryFormat)
	if err != nil {
		var qe *queryError
		if errors.As(err, &qe) && qe.code == 1 && onlyNoRequires(qe.stdout, qe.stderr) {
			return nil, nil
		}
		return nil, zerr.With(zerr.Wrap(err, "failed to query dependents"), "capability", capability)
	}
	return uniqueLines(stdout), nil
}

// provides lists the capabilities provided by the named package.
func (c *Client) provides(ctx context.Context, name string) ([]string, error) {
	stdout, err := c.query(ctx, "-q", "--provides", name)
	if err != nil {
		return nil, zerr.With(zerr.Wrap(err, "failed to query provides"), "package", name)
	}

	var caps []string
	for _, line := range uniqueLines(stdout) {
		if fields := strings.Fields(line); len(fields) > 0 {
			caps = append(caps, fields[0])
		}
	}
	slices.Sort(caps)
	return slices.Compact(caps), nil
}

// queryError carries the captured output of a failed rpm invocation.
type queryError struct {
	code   int
	stdout []byte
	stderr []byte
	err    error
}

func (e *queryError) Error() string {
	msg := strings.TrimSpace(string(e.stderr))
	if msg == "" {
		msg = strings.TrimSpace(string(e.stdout))
	}
	if msg == "" {
		return e.err.Error()
	}
	return fmt.Sprintf("%v (output: %s)", e.err, msg)
}

func (e *queryError) Unwrap() error { return e.err }

// query runs rpm with the configured database path, timeout and retry
// policy and returns stdout.
func (c *Client) query(ctx context.Context, args ...string) ([]byte, error) {
	if c.opts.DBPath != "" {
		args = append([]string{"--dbpath", c.opts.DBPath}, args...)
	}

	var stdout []byte
	attempt := 0
	err := retryWithBackoff(ctx, c.opts.Retries, c.opts.RetryDelay, func() error {
		attempt++
		out, err := c.runOnce(ctx, args)
		if err != nil && isRetryable(err) {
			c.logger.Debug("rpm query failed, retrying", "args", strings.Join(args, " "), "attempt", attempt, "err", err)
		}
		stdout = out
		return err
	})
	return stdout, err
}

func (c *Client) runOnce(ctx context.Context, args []string) ([]byte, error) {
	qctx := ctx
	if c.opts.QueryTimeout > 0 {
		var cancel context.CancelFunc
		qctx, cancel = context.WithTimeout(ctx, c.opts.QueryTimeout)
		defer cancel()
	}

	stdout, stderr, err := c.runner.Run(qctx, c.opts.Binary, args...)
	if err == nil {
		return stdout, nil
	}

	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	if errors.Is(qctx.Err(), context.DeadlineExceeded) {
		return nil, retryable(zerr.With(zerr.Wrap(ErrQueryTimeout, "rpm did not finish in time"), "timeout", c.opts.QueryTimeout.String()))
	}

	code, ok := exitCode(err)
	if !ok {
		return nil, zerr.Wrap(ErrQueryFailed, err.Error())
	}
	qe := &queryError{code: code, stdout: stdout, stderr: stderr, err: zerr.With(zerr.Wrap(ErrQueryFailed, "rpm exited with an error"), "exit_code", code)}
	if code < 0 {
		// Terminated by a signal.
		return nil, retryable(qe)
	}
	return nil, qe
}

// onlyNoRequires reports whether rpm's output consists solely of
// "no package requires" notices.
func onlyNoRequires(stdout, stderr []byte) bool {
	found := false
	for _, out := range [][]byte{stdout, stderr} {
		for _, line := range bytes.Split(out, []byte{'\n'}) {
			l := strings.TrimSpace(string(line))
			if l == "" {
				continue
			}
			if !strings.HasPrefix(l, noRequiresPrefix) {
				return false
			}
			found = true
		}
	}
	return found
}

// uniqueLines returns the sorted, de-duplicated non-empty lines of out.
func uniqueLines(out []byte) []string {
	var lines []string
	for _, line := range strings.Split(string(out), "\n") {
		if l := strings.TrimSpace(line); l != "" {
			lines = append(lines, l)
		}
	}
	slices.Sort(lines)
	return slices.Compact(lines)
}

// parsePackageList parses rpm -qa output produced with listQueryFormat.
func parsePackageList(out []byte) ([]Package, error) {
	var packages []Package

	scanner := bufio.NewScanner(bytes.NewReader(out))
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}

		fields := strings.Split(line, "\t")
		if len(fields) != 6 {
			return nil, zerr.With(zerr.Wrap(ErrQueryFailed, "malformed package line"), "line", lineNo)
		}
		size, err := strconv.ParseInt(strings.TrimSpace(fields[5]), 10, 64)
		if err != nil || size < 0 {
			return nil, zerr.With(zerr.Wrap(ErrQueryFailed, "malformed package size"), "line", lineNo)
		}

		packages = append(packages, Package{
			Name:      fields[0],
			Epoch:     fields[1],
			Version:   fields[2],
			Release:   fields[3],
			Arch:      fields[4],
			SizeBytes: size,
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, zerr.Wrap(err, "failed to read package list")
	}

	return packages, nil
}
