package utils

// Version is overridden at build time with -ldflags "-X .../internal/utils.Version=...".
var Version = "0.1.0"
