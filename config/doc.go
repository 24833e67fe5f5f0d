// Copyright 2026 AgentFlow Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license.

/*
Package config provides configuration management for the agent process
controller.

# Overview

Config is loaded from a YAML file and overridden by environment variables
prefixed AGENTFLOW_, in that priority: defaults -> YAML file -> env.

# Core structures

  - Config: top-level aggregate covering Server, AgentSpec, Redis,
    Database, Mongo, EventStore, Execution, Log, Telemetry
  - Loader: builder-style loader with WithConfigPath / WithEnvPrefix /
    WithValidator

The Agent Registry is built at startup from the directory named by
AgentSpec.Dir; the serve command's --reload flag rebuilds it when that
directory changes. This package itself has no hot-reload or runtime
config-mutation surface: a loaded Config is never re-read.

# Usage

	cfg, err := config.NewLoader().
		WithConfigPath("config.yaml").
		WithEnvPrefix("AGENTFLOW").
		Load()
*/
package config
