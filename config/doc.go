// Copyright 2026 HyperInfer Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license.

/*
Package config loads the gateway's process-local configuration.

# Overview

Both the data-plane client and the control-plane server read their local
configuration the same way: default values, optionally overridden by a
YAML file, optionally overridden again by environment variables. This is
the static, per-process bootstrap configuration (where Redis lives, which
database driver to use, how to log) — not to be confused with the policy
Config snapshot (model aliases, routing rules, quotas) that travels
through internal/configsync at runtime.

# Core types

  - Config: top-level aggregate covering Server, Store (Redis), Database,
    Log, Observability, CORS and Admin (admin JWT auth and the config
    reconciliation interval). Provider API keys are not part of it.
  - Loader: builder-style loader (WithConfigPath, WithEnvPrefix,
    WithValidator).

# Usage

	cfg, err := config.NewLoader().
		WithConfigPath("config.yaml").
		WithEnvPrefix("HYPERINFER").
		Load()
*/
package config
