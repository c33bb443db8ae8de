package main

import "errors"

// errStartup is returned after the cause has already been logged in redacted form.
var errStartup = errors.New("startup failed")
