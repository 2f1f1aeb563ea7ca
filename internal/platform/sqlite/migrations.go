package sqlite

// migration holds a single schema migration with its target version and SQL.
type migration struct {
	version int
	sql     string
}

// migrations is the ordered list of schema migrations. Timestamps are stored
// as INTEGER unix milliseconds in UTC so that range predicates compare
// numerically.
var migrations = []migration{
	{
		version: 1,
		sql: `
CREATE TABLE IF NOT EXISTS schema_version (
	version INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS tasks (
	id                       TEXT PRIMARY KEY,
	user_id                  TEXT NOT NULL,
	project_id               TEXT,
	title                    TEXT NOT NULL,
	description              TEXT NOT NULL DEFAULT '',
	priority                 TEXT NOT NULL DEFAULT '',
	tags                     TEXT NOT NULL DEFAULT '[]',
	status                   TEXT NOT NULL DEFAULT 'Todo'
		CHECK (status IN ('Todo', 'In Progress', 'Done')),
	completed                INTEGER NOT NULL DEFAULT 0,
	due_date                 INTEGER,
	start_date               INTEGER,
	reminder_time            INTEGER,
	recurring                INTEGER NOT NULL DEFAULT 0,
	repeat_type              TEXT,
	repeat_interval          INTEGER NOT NULL DEFAULT 1,
	repeat_until             INTEGER,
	is_recurring_parent      INTEGER NOT NULL DEFAULT 0,
	parent_recurring_task_id TEXT REFERENCES tasks(id) ON DELETE CASCADE,
	created_at               INTEGER NOT NULL,
	updated_at               INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_tasks_user_id ON tasks (user_id);
CREATE INDEX IF NOT EXISTS idx_tasks_reminder_time ON tasks (reminder_time);

CREATE UNIQUE INDEX IF NOT EXISTS uq_tasks_instance_due_date
	ON tasks (parent_recurring_task_id, due_date)
	WHERE parent_recurring_task_id IS NOT NULL AND due_date IS NOT NULL;

CREATE UNIQUE INDEX IF NOT EXISTS uq_tasks_instance_start_date
	ON tasks (parent_recurring_task_id, start_date)
	WHERE parent_recurring_task_id IS NOT NULL AND due_date IS NULL;

INSERT INTO schema_version (version) VALUES (1);
`,
	},
	{
		version: 2,
		sql: `
CREATE TABLE IF NOT EXISTS notifications (
	id            TEXT PRIMARY KEY,
	user_id       TEXT NOT NULL,
	task_id       TEXT REFERENCES tasks(id) ON DELETE CASCADE,
	reminder_time INTEGER,
	message       TEXT NOT NULL,
	type          TEXT NOT NULL CHECK (type IN ('reminder', 'goal', 'warning', 'info')),
	read          INTEGER NOT NULL DEFAULT 0,
	created_at    INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_notifications_user_created ON notifications (user_id, created_at);

CREATE UNIQUE INDEX IF NOT EXISTS uq_notifications_reminder
	ON notifications (task_id, reminder_time)
	WHERE type = 'reminder';

INSERT INTO schema_version (version) VALUES (2);
`,
	},
}
