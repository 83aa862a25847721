package store

const schema = `
CREATE TABLE IF NOT EXISTS runs (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    started_at TIMESTAMP NOT NULL,
    fingerprint TEXT NOT NULL,
    package_count INTEGER NOT NULL,
    edge_count INTEGER NOT NULL,
    graph_source TEXT NOT NULL,
    snapshot_path TEXT,
    output_path TEXT
);

CREATE TABLE IF NOT EXISTS packages (
    run_id INTEGER NOT NULL,
    identity TEXT NOT NULL,
    name TEXT NOT NULL,
    size_bytes INTEGER NOT NULL,
    PRIMARY KEY (run_id, identity),
    FOREIGN KEY (run_id) REFERENCES runs(id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS dependents (
    run_id INTEGER NOT NULL,
    identity TEXT NOT NULL,
    dependent TEXT NOT NULL,
    PRIMARY KEY (run_id, identity, dependent),
    FOREIGN KEY (run_id, identity) REFERENCES packages(run_id, identity) ON DELETE CASCADE,
    FOREIGN KEY (run_id, dependent) REFERENCES packages(run_id, identity) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS impact_records (
    run_id INTEGER NOT NULL,
    identity TEXT NOT NULL,
    total_removal_bytes INTEGER NOT NULL,
    co_removed TEXT NOT NULL,
    PRIMARY KEY (run_id, identity),
    FOREIGN KEY (run_id, identity) REFERENCES packages(run_id, identity) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at);
CREATE INDEX IF NOT EXISTS idx_packages_name ON packages(run_id, name);
CREATE INDEX IF NOT EXISTS idx_dependents_dependent ON dependents(run_id, dependent);
CREATE INDEX IF NOT EXISTS idx_impact_total ON impact_records(run_id, total_removal_bytes);
`
