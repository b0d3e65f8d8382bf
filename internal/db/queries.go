package db

const (
	InsertUser = `
		INSERT INTO users (fullname, username, email, password, contact, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	GetUserByID = `
		SELECT user_id, fullname, username, email, password, contact, created_at
		FROM users WHERE user_id = ?
	`

	GetUserByUsername = `
		SELECT user_id, fullname, username, email, password, contact, created_at
		FROM users WHERE username = ?
	`

	UserExists = `SELECT EXISTS(SELECT 1 FROM users WHERE user_id = ?)`

	UserIdentityTaken = `
		SELECT EXISTS(
			SELECT 1 FROM users
			WHERE (fullname = ? OR username = ? OR email = ?) AND user_id != ?
		)
	`

	UpdateUser = `
		UPDATE users SET fullname = ?, username = ?, email = ?, password = ?, contact = ?
		WHERE user_id = ?
	`
)

const (
	InsertFile = `
		INSERT INTO files (user_id, file_name, file_path, file_type, created_at)
		VALUES (?, ?, ?, ?, ?)
	`

	GetFileByID = `
		SELECT file_id, user_id, file_name, file_path, file_type, created_at
		FROM files WHERE file_id = ?
	`
)

const (
	jobColumns = `job_id, user_id, file_id, pages, paper_size, color_option, copies, notes, status, created_at, updated_at`

	InsertJob = `
		INSERT INTO print_jobs (user_id, file_id, pages, paper_size, color_option, copies, notes, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	GetJobByID = `SELECT ` + jobColumns + ` FROM print_jobs WHERE job_id = ?`

	ListRecentJobsByUser = `
		SELECT ` + jobColumns + ` FROM print_jobs
		WHERE user_id = ?
		ORDER BY created_at DESC, job_id DESC
		LIMIT ?
	`

	// Guarded so a job only leaves the status the caller observed.
	UpdateJobStatus = `
		UPDATE print_jobs SET status = ?, updated_at = ?
		WHERE job_id = ? AND status = ?
	`

	CountJobsByStatus = `SELECT status, COUNT(*) FROM print_jobs GROUP BY status`

	ListHistoryByUser = `
		SELECT pj.job_id, COALESCE(f.file_name, ''), pj.created_at, pj.status, pj.pages, pj.copies
		FROM print_jobs pj
		LEFT JOIN files f ON pj.file_id = f.file_id
		WHERE pj.user_id = ?
		ORDER BY pj.created_at DESC, pj.job_id DESC
	`
)

const (
	notificationColumns = `notif_id, user_id, subject, message, status, created_at`

	InsertNotification = `
		INSERT INTO notifications (user_id, subject, message, status, created_at)
		VALUES (?, ?, ?, ?, ?)
	`

	GetNotificationByID = `SELECT ` + notificationColumns + ` FROM notifications WHERE notif_id = ?`

	ListNotificationsForUser = `
		SELECT ` + notificationColumns + ` FROM notifications
		WHERE user_id = ? OR user_id IS NULL
		ORDER BY created_at DESC, notif_id DESC
	`

	MarkNotificationRead = `
		UPDATE notifications SET status = 'Read'
		WHERE notif_id = ? AND status = 'Unread'
	`

	NotificationExists = `SELECT EXISTS(SELECT 1 FROM notifications WHERE notif_id = ?)`

	MarkAllReadForUser = `
		UPDATE notifications SET status = 'Read'
		WHERE (user_id = ? OR user_id IS NULL) AND status = 'Unread'
	`

	CountUnreadForUser = `
		SELECT COUNT(*) FROM notifications
		WHERE (user_id = ? OR user_id IS NULL) AND status = 'Unread'
	`
)

const (
	GetSetting = `SELECT value FROM settings WHERE key = ?`

	// Keeps the first writer's value when two processes race to create it.
	InsertSettingIfAbsent = `
		INSERT INTO settings (key, value, updated_at)
		VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(key) DO NOTHING
	`
)

const (
	InsertAuditLog = `
		INSERT INTO audit_log (action, entity_type, entity_id, actor, details, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	ListAuditLogByEntity = `
		SELECT id, action, entity_type, entity_id, actor, details, created_at
		FROM audit_log WHERE entity_type = ? AND entity_id = ?
		ORDER BY created_at ASC, id ASC
	`
)

const (
	GetAppliedMigrations = `SELECT version FROM schema_migrations`
)
