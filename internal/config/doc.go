// Package config defines the installer settings and provides helpers to load,
// validate and save them in YAML format.
//
// Every field has a default targeting the Julia distribution on linux x86_64,
// so the installer runs without a configuration file.
package config
