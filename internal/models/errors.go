package models

import "errors"

var (
	// ErrMissingIdentifier the reading lacks a user id or an aquarium reference
	ErrMissingIdentifier = errors.New("missing user or aquarium identifier")
	// ErrAquariumNotFound the aquarium reference does not resolve
	ErrAquariumNotFound = errors.New("aquarium not found")
	// ErrNoNotificationTarget the user has no notification token
	ErrNoNotificationTarget = errors.New("no notification target for user")
	// ErrNotifyFailure the notifier rejected or failed to deliver an alert
	ErrNotifyFailure = errors.New("notification delivery failed")
	// ErrSourceUnavailable the reading batch could not be fetched
	ErrSourceUnavailable = errors.New("reading source unavailable")
	// ErrCycleInProgress a poll cycle is already running
	ErrCycleInProgress = errors.New("poll cycle already in progress")
)
