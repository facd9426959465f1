// Package config provides configuration structures and utilities for postfetch.
// It defines the API origins to try, network and concurrency limits, cache
// settings, and report preferences, and loads overrides from the .postfetch
// YAML file and from the environment.
package config
