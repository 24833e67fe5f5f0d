// Copyright 2026 AgentFlow Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license.

/*
Package agentspec loads declarative agent resource descriptions — directories
of YAML or JSON files naming an agent's handlers, their allowed predecessor
states, and their input parameters — and validates them before they are
compiled into process.AgentDescriptors by the Agent Registry.

# Core types

  - AgentDefinition / HandlerDefinition / ParamDefinition — the on-disk shape
  - Loader / YAMLLoader — reads a single file or an entire directory
  - Validate — checks the initializer/predecessor-states invariant

# Usage

	loader := agentspec.NewYAMLLoader()
	defs, err := loader.LoadDir("./agents")
	for _, def := range defs {
	    if err := agentspec.Validate(def); err != nil { ... }
	}
*/
package agentspec
