// Copyright (c) AgentFlow Authors.
// Licensed under the MIT License.

/*
Package types provides the shared type contracts used across the process
controller: the JSON Schema builder used by the Schema Deriver, and the
structured Error used by every component to carry an HTTP status, a
retryable flag, and an optional cause.

It depends on nothing else in the module, so every other package may
import it without risk of a cycle.
*/
package types
