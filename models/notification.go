package models

import (
	"strconv"
	"strings"
)

const (
	rejoinPrefix = "rejoin:"

	// QueuesCustomID opens the queue list
	QueuesCustomID = "queues"
)

// NotificationAction is an optional button attached to a notification
type NotificationAction struct {
	Label    string
	CustomID string
}

// RejoinAction is the button that joins queueID again with the main character
func RejoinAction(queueID int64) NotificationAction {
	return NotificationAction{
		Label:    "Join this queue again",
		CustomID: rejoinPrefix + strconv.FormatInt(queueID, 10),
	}
}

// QueuesAction is the button that lists open queues
func QueuesAction() NotificationAction {
	return NotificationAction{
		Label:    "Choose another queue",
		CustomID: QueuesCustomID,
	}
}

// ParseRejoinCustomID extracts the queue ID from a rejoin button
func ParseRejoinCustomID(customID string) (int64, bool) {
	raw, ok := strings.CutPrefix(customID, rejoinPrefix)
	if !ok {
		return 0, false
	}
	queueID, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || queueID <= 0 {
		return 0, false
	}
	return queueID, true
}
