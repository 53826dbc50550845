package slogx

// ErrorKey is the attribute key used for error values across the codebase.
// Kept in sync with the logger package's error middleware.
const ErrorKey = "error"
