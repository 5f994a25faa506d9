package store

// SQL query constants organized by entity. PostgresStore methods
// reference these rather than inlining SQL.

// Scheduled report queries.
const (
	queryCreateReport = `
		INSERT INTO scheduled_reports (
			name, frequency, delivery_format, recipients,
			is_scheduled, schedule, created_at, updated_at
		) VALUES (
			@name, @frequency, @delivery_format, @recipients,
			@is_scheduled, @schedule, now(), now()
		)
		RETURNING id, created_at, updated_at`

	queryGetReport = `
		SELECT id, name, frequency, delivery_format, recipients,
			is_scheduled, schedule, last_sent_at, created_at, updated_at
		FROM scheduled_reports
		WHERE id = $1`

	queryListReportsAll = `
		SELECT id, name, frequency, delivery_format, recipients,
			is_scheduled, schedule, last_sent_at, created_at, updated_at
		FROM scheduled_reports
		ORDER BY created_at`

	queryListReportsScheduled = `
		SELECT id, name, frequency, delivery_format, recipients,
			is_scheduled, schedule, last_sent_at, created_at, updated_at
		FROM scheduled_reports
		WHERE is_scheduled
		ORDER BY created_at`

	queryUpdateReport = `
		UPDATE scheduled_reports SET
			name = @name,
			frequency = @frequency,
			delivery_format = @delivery_format,
			recipients = @recipients,
			schedule = @schedule,
			updated_at = now()
		WHERE id = @id
		RETURNING updated_at`

	querySetReportScheduled = `
		UPDATE scheduled_reports SET
			is_scheduled = $2,
			updated_at = now()
		WHERE id = $1`

	queryUpdateReportLastSent = `
		UPDATE scheduled_reports SET
			last_sent_at = $2,
			updated_at = now()
		WHERE id = $1`
)

// Job binding queries.
const (
	queryUpsertBinding = `
		INSERT INTO scheduled_jobs (
			report_id, cron_expression, timezone, is_active,
			next_run_at, created_at, updated_at
		) VALUES (
			@report_id, @cron_expression, @timezone, @is_active,
			@next_run_at, now(), now()
		)
		ON CONFLICT (report_id) DO UPDATE SET
			cron_expression = EXCLUDED.cron_expression,
			timezone = EXCLUDED.timezone,
			is_active = EXCLUDED.is_active,
			next_run_at = EXCLUDED.next_run_at,
			updated_at = now()
		RETURNING id, created_at, updated_at`

	queryGetBindingByReport = `
		SELECT id, report_id, cron_expression, timezone, is_active,
			last_run_at, next_run_at, created_at, updated_at
		FROM scheduled_jobs
		WHERE report_id = $1`

	queryListBindingsAll = `
		SELECT id, report_id, cron_expression, timezone, is_active,
			last_run_at, next_run_at, created_at, updated_at
		FROM scheduled_jobs
		ORDER BY created_at`

	queryListBindingsActive = `
		SELECT id, report_id, cron_expression, timezone, is_active,
			last_run_at, next_run_at, created_at, updated_at
		FROM scheduled_jobs
		WHERE is_active
		ORDER BY created_at`

	queryListDueBindings = `
		SELECT id, report_id, cron_expression, timezone, is_active,
			last_run_at, next_run_at, created_at, updated_at
		FROM scheduled_jobs
		WHERE is_active AND next_run_at IS NOT NULL AND next_run_at <= $1
		ORDER BY next_run_at`

	queryUpdateBindingRun = `
		UPDATE scheduled_jobs SET
			last_run_at = $2,
			next_run_at = $3,
			updated_at = now()
		WHERE id = $1`

	querySetBindingActive = `
		UPDATE scheduled_jobs SET
			is_active = $2,
			updated_at = now()
		WHERE report_id = $1`

	queryDeleteBinding = `DELETE FROM scheduled_jobs WHERE report_id = $1`
)

// Delivery history queries.
const (
	queryInsertDeliveryAttempt = `
		INSERT INTO report_delivery_history (
			report_id, delivery_format, recipients, status, created_at
		) VALUES (
			@report_id, @delivery_format, @recipients, @status, now()
		)
		RETURNING id, created_at`

	// The status guard makes finalization a one-shot transition.
	queryFinalizeDeliveryAttempt = `
		UPDATE report_delivery_history SET
			status = $2,
			error_message = $3,
			file_size = $4,
			delivered_at = now()
		WHERE id = $1 AND status = 'pending'`

	queryGetDeliveryAttemptStatus = `
		SELECT status FROM report_delivery_history WHERE id = $1`

	queryListDeliveryAttempts = `
		SELECT id, report_id, delivery_format, recipients, status,
			COALESCE(error_message, ''), file_size, delivered_at, created_at
		FROM report_delivery_history
		WHERE report_id = $1
		ORDER BY created_at DESC
		LIMIT $2`
)

// Threshold rule queries.
const (
	queryCreateRule = `
		INSERT INTO kpi_alerts (
			kpi_id, condition, threshold, channels, recipients,
			active, created_at, updated_at
		) VALUES (
			@kpi_id, @condition, @threshold, @channels, @recipients,
			@active, now(), now()
		)
		RETURNING id, created_at, updated_at`

	queryGetRule = `
		SELECT id, kpi_id, condition, threshold, channels, recipients,
			active, created_at, updated_at
		FROM kpi_alerts
		WHERE id = $1`

	queryUpdateRule = `
		UPDATE kpi_alerts SET
			condition = @condition,
			threshold = @threshold,
			channels = @channels,
			recipients = @recipients,
			active = @active,
			updated_at = now()
		WHERE id = @id`

	queryDeleteRule = `DELETE FROM kpi_alerts WHERE id = $1`

	queryListRules = `
		SELECT id, kpi_id, condition, threshold, channels, recipients,
			active, created_at, updated_at
		FROM kpi_alerts
		ORDER BY created_at`

	queryListRulesByMetric = `
		SELECT id, kpi_id, condition, threshold, channels, recipients,
			active, created_at, updated_at
		FROM kpi_alerts
		WHERE kpi_id = $1
		ORDER BY created_at`

	queryListRulesByMetricActive = `
		SELECT id, kpi_id, condition, threshold, channels, recipients,
			active, created_at, updated_at
		FROM kpi_alerts
		WHERE kpi_id = $1 AND active
		ORDER BY created_at`
)

// Alert trigger queries.
const (
	queryInsertAlertTrigger = `
		INSERT INTO alert_history (
			alert_id, kpi_id, actual_value, threshold, message, triggered_at
		) VALUES (
			@alert_id, @kpi_id, @actual_value, @threshold, @message, @triggered_at
		)
		RETURNING id`

	queryListAlertTriggers = `
		SELECT id, alert_id, kpi_id, actual_value, threshold, message, triggered_at
		FROM alert_history
		WHERE kpi_id = $1
		ORDER BY triggered_at DESC
		LIMIT $2`

	queryListAlertTriggersByRule = `
		SELECT id, alert_id, kpi_id, actual_value, threshold, message, triggered_at
		FROM alert_history
		WHERE alert_id = $1
		ORDER BY triggered_at DESC
		LIMIT $2`
)

// Metric queries.
const (
	queryCreateMetric = `
		INSERT INTO kpis (name, unit, created_at)
		VALUES (@name, @unit, now())
		RETURNING id, created_at`

	queryGetMetric = `
		SELECT id, name, COALESCE(unit, ''), created_at
		FROM kpis
		WHERE id = $1`

	queryListMetrics = `
		SELECT id, name, COALESCE(unit, ''), created_at
		FROM kpis
		ORDER BY name`
)

// System state query.
const querySystemState = `
	SELECT
		(SELECT COUNT(*) FROM scheduled_reports) AS reports_total,
		(SELECT COUNT(*) FROM scheduled_reports WHERE is_scheduled) AS reports_scheduled,
		(SELECT COUNT(*) FROM scheduled_jobs WHERE is_active) AS bindings_active,
		(SELECT COUNT(*) FROM report_delivery_history WHERE status = 'pending') AS deliveries_pending,
		(SELECT COUNT(*) FROM report_delivery_history WHERE status = 'failed') AS deliveries_failed,
		(SELECT COUNT(*) FROM kpi_alerts) AS rules_total,
		(SELECT COUNT(*) FROM kpi_alerts WHERE active) AS rules_active,
		(SELECT COUNT(*) FROM alert_history) AS triggers_total`
