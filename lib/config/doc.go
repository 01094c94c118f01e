// Copyright 2026 The Loom Authors
// SPDX-License-Identifier: Apache-2.0

// Package config provides YAML configuration loading for Loom
// binaries.
//
// Configuration is loaded from a single file specified by either the
// LOOM_CONFIG environment variable (via [Load]) or a --config flag
// (via [LoadFile]). There are no fallbacks, no ~/.config discovery,
// and no automatic file search. This ensures deterministic, auditable
// configuration with no hidden overrides.
//
// Variable expansion is performed on path fields after loading:
// ${HOME}, ${LOOM_STATE}, and ${VAR:-default} patterns are expanded.
// No other environment variables override config values.
//
// This package depends on no other Loom packages.
package config
