package observability

// Metric name prefixes
const (
	MetricPrefix = "guildbot"
)

// Metric names
const (
	// Queue metrics
	MembershipChangesTotal = MetricPrefix + ".queue.membership_changes_total"
	RewardsIssuedTotal     = MetricPrefix + ".queue.rewards_issued_total"
	MembersCreatedTotal    = MetricPrefix + ".members.created_total"

	// Announcement metrics
	AnnouncementsBroadcastTotal = MetricPrefix + ".announcements.broadcast_total"
	AnnouncementDeliveriesTotal = MetricPrefix + ".announcements.deliveries_total"

	// Roster metrics
	RosterRefreshesTotal  = MetricPrefix + ".roster.refreshes_total"
	RosterRefreshDuration = MetricPrefix + ".roster.refresh_duration"
	RosterEntries         = MetricPrefix + ".roster.entries"

	// Worker metrics
	WorkerTasksTotal   = MetricPrefix + ".worker.tasks_total"
	WorkerTaskDuration = MetricPrefix + ".worker.task_duration"

	// NATS metrics
	NATSMessagesPublishedTotal = MetricPrefix + ".nats.messages_published_total"
)

// Label keys
const (
	LabelStatus    = "status"
	LabelQueue     = "queue"
	LabelKind      = "kind"
	LabelResult    = "result"
	LabelTask      = "task"
	LabelEventType = "event_type"
)

// Result label values
const (
	ResultSuccess = "success"
	ResultFailure = "failure"
	ResultPanic   = "panic"
)
