package model

import "time"

// NotificationChannel is a delivery channel hint passed through to the
// platform notification layer. The scheduler never interprets it.
type NotificationChannel string

const (
	ChannelVisual    NotificationChannel = "visual"
	ChannelSound     NotificationChannel = "sound"
	ChannelVibration NotificationChannel = "vibration"
)

// Medication represents a medication with its reminder schedule
type Medication struct {
	ID                   string                `json:"id"`
	Name                 string                `json:"name"`
	Dosage               string                `json:"dosage"`
	ReminderTime         string                `json:"reminder_time"` // 24-hour "HH:MM"
	ReminderDays         []int                 `json:"reminder_days"` // weekdays 0-6, 0=Sunday
	NotificationTypes    []NotificationChannel `json:"notification_types"`
	IsActive             bool                  `json:"is_active"`
	RetryCount           int                   `json:"retry_count"`
	CriticalNotification bool                  `json:"critical_notification"`
	Notes                *string               `json:"notes,omitempty"`
	Color                string                `json:"color"`
	CreatedAt            time.Time             `json:"created_at"`
	UpdatedAt            time.Time             `json:"updated_at"`
}

// DoseStatus represents the recorded outcome of a dose. A pending dose is
// the absence of a log row, never a stored status.
type DoseStatus string

const (
	DoseStatusTaken   DoseStatus = "taken"
	DoseStatusSkipped DoseStatus = "skipped"
)

// DoseLog represents a recorded dose event
type DoseLog struct {
	ID            string     `json:"id"`
	MedicationID  string     `json:"medication_id"`
	ScheduledTime time.Time  `json:"scheduled_time"`
	ActualTime    *time.Time `json:"actual_time,omitempty"` // set only for taken
	Status        DoseStatus `json:"status"`
	PhotoURI      *string    `json:"photo_uri,omitempty"`
	Notes         *string    `json:"notes,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}

// RetryNotification represents one follow-up nudge in a retry chain.
// Cancellation flips IsActive instead of deleting the row so the chain
// history stays available.
type RetryNotification struct {
	ID            string    `json:"id"`
	MedicationID  string    `json:"medication_id"`
	OriginalTime  time.Time `json:"original_time"`
	NextRetryTime time.Time `json:"next_retry_time"`
	Sequence      int       `json:"sequence"`
	IsActive      bool      `json:"is_active"`
	CreatedAt     time.Time `json:"created_at"`
}

// UpcomingDose is a derived view of one scheduled dose, rebuilt on every
// reconciliation pass and never persisted.
type UpcomingDose struct {
	Medication  Medication  `json:"medication"`
	NextDose    time.Time   `json:"next_dose"`
	TimeUntil   string      `json:"time_until"`
	TodayStatus *DoseStatus `json:"today_status,omitempty"`
	LogID       *string     `json:"log_id,omitempty"`
}

// AdherenceStats summarizes the full dose log history
type AdherenceStats struct {
	TakenCount     int `json:"taken_count"`
	SkippedCount   int `json:"skipped_count"`
	ComplianceRate int `json:"compliance_rate"` // 0-100
	CurrentStreak  int `json:"current_streak"`  // consecutive days
}

// FriendshipStatus represents the state of a friend request
type FriendshipStatus string

const (
	FriendshipStatusPending  FriendshipStatus = "pending"
	FriendshipStatusAccepted FriendshipStatus = "accepted"
	FriendshipStatusBlocked  FriendshipStatus = "blocked"
)

// Friendship represents a friend relationship between two users
type Friendship struct {
	ID          string           `json:"id"`
	RequesterID string           `json:"requester_id"`
	AddresseeID string           `json:"addressee_id"`
	Status      FriendshipStatus `json:"status"`
	CreatedAt   time.Time        `json:"created_at"`
	UpdatedAt   time.Time        `json:"updated_at"`
}
