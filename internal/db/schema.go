package db

// SchemaSQL defines the talenthub tables. Tables are schemaless so nested
// blobs (progress, skills assessment) keep arbitrary keys; only timestamps
// and lookup indexes are declared.
const SchemaSQL = `
    -- ==========================================================================
    -- UPLOAD SESSIONS
    -- ==========================================================================
    DEFINE TABLE IF NOT EXISTS upload_session SCHEMALESS;
    DEFINE FIELD IF NOT EXISTS created_at ON upload_session TYPE datetime DEFAULT time::now();
    DEFINE FIELD IF NOT EXISTS updated_at ON upload_session TYPE datetime DEFAULT time::now();
    DEFINE INDEX IF NOT EXISTS upload_session_status ON upload_session FIELDS status;
    DEFINE INDEX IF NOT EXISTS upload_session_created_by ON upload_session FIELDS created_by;

    -- ==========================================================================
    -- STANDARD ROLES
    -- ==========================================================================
    DEFINE TABLE IF NOT EXISTS standard_role SCHEMALESS;
    DEFINE FIELD IF NOT EXISTS created_at ON standard_role TYPE datetime DEFAULT time::now();

    -- ==========================================================================
    -- EMPLOYEES
    -- ==========================================================================
    DEFINE TABLE IF NOT EXISTS employee SCHEMALESS;
    DEFINE FIELD IF NOT EXISTS created_at ON employee TYPE datetime DEFAULT time::now();
    DEFINE FIELD IF NOT EXISTS updated_at ON employee TYPE datetime DEFAULT time::now();
    DEFINE INDEX IF NOT EXISTS employee_session ON employee FIELDS session_id;
    DEFINE INDEX IF NOT EXISTS employee_assignment ON employee FIELDS role_assignment_status;

    -- ==========================================================================
    -- ROLE MAPPINGS
    -- ==========================================================================
    DEFINE TABLE IF NOT EXISTS role_mapping SCHEMALESS;
    DEFINE FIELD IF NOT EXISTS created_at ON role_mapping TYPE datetime DEFAULT time::now();
    DEFINE INDEX IF NOT EXISTS role_mapping_session ON role_mapping FIELDS session_id;

    -- ==========================================================================
    -- JOB DESCRIPTIONS
    -- ==========================================================================
    DEFINE TABLE IF NOT EXISTS job_description SCHEMALESS;
    DEFINE FIELD IF NOT EXISTS created_at ON job_description TYPE datetime DEFAULT time::now();
    DEFINE INDEX IF NOT EXISTS job_description_role ON job_description FIELDS standard_role_id;
`
