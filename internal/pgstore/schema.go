package pgstore

const schemaSQL = `
CREATE TABLE IF NOT EXISTS upload_sessions (
    id            TEXT PRIMARY KEY,
    name          TEXT NOT NULL,
    kind          TEXT NOT NULL,
    file_names    TEXT[] NOT NULL DEFAULT '{}',
    total_rows    INTEGER NOT NULL CHECK (total_rows >= 0),
    status        TEXT NOT NULL CHECK (status IN ('uploading','analyzing','standardizing','assigning_roles','roles_assigned','completed','failed','error')),
    progress      JSONB NOT NULL DEFAULT '{}',
    error_message TEXT,
    created_by    TEXT NOT NULL,
    record_ids    TEXT[] NOT NULL DEFAULT '{}',
    created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS upload_sessions_status_idx ON upload_sessions (status);
CREATE INDEX IF NOT EXISTS upload_sessions_created_by_idx ON upload_sessions (created_by);

CREATE TABLE IF NOT EXISTS session_events (
    id          BIGSERIAL PRIMARY KEY,
    session_id  TEXT NOT NULL REFERENCES upload_sessions (id) ON DELETE CASCADE,
    from_status TEXT,
    to_status   TEXT NOT NULL,
    reason      TEXT NOT NULL,
    at          TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS session_events_session_idx ON session_events (session_id, at);

CREATE TABLE IF NOT EXISTS standard_roles (
    seq             BIGSERIAL,
    id              TEXT PRIMARY KEY,
    title           TEXT NOT NULL,
    department      TEXT NOT NULL DEFAULT '',
    job_family      TEXT NOT NULL DEFAULT '',
    level           TEXT NOT NULL DEFAULT '',
    category        TEXT NOT NULL DEFAULT '',
    description     TEXT NOT NULL DEFAULT '',
    required_skills TEXT[] NOT NULL DEFAULT '{}',
    created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS employees (
    seq                    BIGSERIAL,
    id                     TEXT PRIMARY KEY,
    session_id             TEXT NOT NULL,
    employee_number        TEXT NOT NULL DEFAULT '',
    name                   TEXT NOT NULL DEFAULT '',
    email                  TEXT NOT NULL DEFAULT '',
    source_company         TEXT NOT NULL DEFAULT '',
    position               TEXT NOT NULL DEFAULT '',
    department             TEXT NOT NULL DEFAULT '',
    level                  TEXT NOT NULL DEFAULT '',
    years_experience       INTEGER NOT NULL DEFAULT 0,
    skills                 TEXT[] NOT NULL DEFAULT '{}',
    certifications         TEXT[] NOT NULL DEFAULT '{}',
    standard_role_id       TEXT REFERENCES standard_roles (id),
    ai_suggested_role_id   TEXT REFERENCES standard_roles (id),
    role_assignment_status TEXT NOT NULL DEFAULT 'pending',
    assignment_confidence  DOUBLE PRECISION,
    skills_assessment      JSONB,
    created_at             TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at             TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    CONSTRAINT employees_assignment_check CHECK (
        (role_assignment_status = 'assigned' AND standard_role_id IS NOT NULL)
        OR (role_assignment_status = 'ai_suggested' AND ai_suggested_role_id IS NOT NULL AND standard_role_id IS NULL)
        OR (role_assignment_status IN ('pending', 'ai_no_match') AND standard_role_id IS NULL)
    )
);
CREATE INDEX IF NOT EXISTS employees_session_idx ON employees (session_id, seq);
CREATE INDEX IF NOT EXISTS employees_status_idx ON employees (role_assignment_status);

CREATE TABLE IF NOT EXISTS role_mappings (
    seq                 BIGSERIAL,
    id                  TEXT PRIMARY KEY,
    session_id          TEXT NOT NULL,
    original_title      TEXT NOT NULL,
    original_department TEXT NOT NULL DEFAULT '',
    original_level      TEXT NOT NULL DEFAULT '',
    source_company      TEXT NOT NULL DEFAULT '',
    description         TEXT NOT NULL DEFAULT '',
    standard_role_id    TEXT REFERENCES standard_roles (id),
    confidence          DOUBLE PRECISION NOT NULL DEFAULT 0,
    status              TEXT NOT NULL DEFAULT 'pending',
    created_at          TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    CONSTRAINT role_mappings_mapped_check CHECK (status <> 'mapped' OR standard_role_id IS NOT NULL)
);
CREATE INDEX IF NOT EXISTS role_mappings_session_idx ON role_mappings (session_id, seq);

CREATE TABLE IF NOT EXISTS job_descriptions (
    seq              BIGSERIAL,
    id               TEXT PRIMARY KEY,
    standard_role_id TEXT NOT NULL REFERENCES standard_roles (id) ON DELETE CASCADE,
    title            TEXT NOT NULL DEFAULT '',
    summary          TEXT NOT NULL DEFAULT '',
    responsibilities TEXT[] NOT NULL DEFAULT '{}',
    qualifications   TEXT[] NOT NULL DEFAULT '{}',
    status           TEXT NOT NULL DEFAULT 'draft',
    created_at       TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS job_descriptions_role_idx ON job_descriptions (standard_role_id, seq);
`
