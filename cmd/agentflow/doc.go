// Copyright (c) AgentFlow Authors.
// Licensed under the MIT License.

/*
Package main 提供 AgentFlow 进程控制器的服务端程序入口。

# 概述

cmd/agentflow 是进程控制器的可执行入口：加载声明式的 Agent/Handler
描述文件，编译成只读的 Registry，挂载每个动作对应的 HTTP 路由，并驱动
事件溯源的状态机。程序同时提供数据库迁移、健康检查和版本查询等子命令。

# 核心类型

  - Server         — 主服务器，管理 HTTP、Metrics 双端口及优雅关闭
  - Middleware      — HTTP 中间件函数签名 func(http.Handler) http.Handler
  - responseWriter  — 包装 http.ResponseWriter 以捕获状态码

# 主要能力

  - 子命令：serve（启动服务）、migrate（数据库迁移）、version、health
  - 中间件链：Recovery、RequestID、SecurityHeaders、RequestLogger、
    MetricsMiddleware、OTelTracing、CORS、RateLimiter（基于 IP）
  - Event Store 后端可插拔：memory、sql（GORM，经 internal/migration 建表）、mongo
  - 每进程 ID 的互斥：Redis 可用时使用 process.CacheLocker，否则退回
    process.LocalLocker
  - Metrics 服务器：独立端口暴露 /metrics（Prometheus）；健康检查路由挂在 HTTP 主端口
  - 优雅关闭：信号监听 → 关闭 HTTP → 关闭 Metrics → 关闭 Event Store → Wait
  - 构建注入：Version、BuildTime、GitCommit 通过 ldflags 设置
*/
package main
