// 版权所有 2024 AgentFlow Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 metrics 提供基于 Prometheus 的全链路指标采集能力，覆盖
HTTP、供应商调用、限流、遥测消费与数据库五大维度。

# 概述

本包通过 Collector 统一注册和记录 Prometheus 指标，使用 promauto
自动注册机制，避免手动管理 Registry。所有指标按 namespace 隔离，
支持多维度 label 分组，便于 Grafana 等工具进行可视化与告警。

# 核心类型

  - Collector：指标收集器，持有 Counter、Histogram、Gauge 等
    Prometheus 向量指标，按业务域分组管理。

# 主要能力

  - HTTP 指标：请求总数、请求耗时、请求/响应体大小，
    按 method/path/status 分组，状态码归类为 2xx/3xx/4xx/5xx；
    供控制面 api/ 管理接口使用。
  - 供应商调用指标：请求总数、请求耗时、Token 用量（prompt/completion），
    按 provider/model 分组；由 internal/client 编排器在出站调用成功后记录。
  - 限流指标：准入判定计数，按 decision（allowed/denied/error）
    分组；由 internal/client 编排器在每次准入判定时记录。
  - 遥测消费指标：消费者组的积压条目数 Gauge，按 stream/group 分组；
    由 internal/telemetry 的消费者周期性上报。
  - 数据库指标：活跃/空闲连接数 Gauge、查询耗时 Histogram，
    按 database/operation 分组；RecordDBConnections 与 RecordDBQuery
    在本模块内没有调用方，internal/dbpool 与 internal/tenant 不记录这些指标。
*/
package metrics
