// Package maintenance runs periodic housekeeping jobs on a cron schedule.
//
// Two jobs are registered:
//
//   - purge-password-resets deletes expired password reset tokens
//   - refresh-gauges recounts packages, active users and stored downloads and
//     samples the connection pool
//
// Schedules use robfig/cron syntax, including descriptors such as
// "@every 15m". Overlapping runs of the same job are skipped.
package maintenance
