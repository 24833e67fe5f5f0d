// Copyright 2026 AgentFlow Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license.

/*
Package eventstore implements the append-only document store behind process
event logs. Store defines two operations — Insert and Find — against a named
collection of JSON-compatible documents; ordering is left to callers, who
sort by their own timestamp field when reducing to current state.

Three backends are provided:

  - MemoryStore — an in-process map, for tests and single-node deployments
  - MongoStore — go.mongodb.org/mongo-driver/v2, selected by the "mongo"
    backend setting (the configured default backend is "memory")
  - SQLStore — gorm.io/gorm across postgres/mysql/sqlite, storing each
    document as a JSON column alongside process_id/agent/action columns
    (only process_id is indexed); see internal/migration for the schema it
    depends on
*/
package eventstore
