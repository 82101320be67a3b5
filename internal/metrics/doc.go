// 版权所有 2024 ResearchFlow Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 metrics 提供基于 Prometheus 的流水线指标采集能力，覆盖
阶段执行、重试恢复、整次运行与缓存四个维度。

# 概述

本包通过 Collector 统一注册和记录 Prometheus 指标。构造时可传入
自定义 Registerer（便于测试隔离），缺省使用全局 DefaultRegisterer。
所有指标按 namespace 隔离，支持多维度 label 分组。

# 主要能力

  - 阶段指标：执行总数与执行耗时，按 stage/status 分组，
    status 为 ok 或 fallback。
  - 重试指标：重试尝试计数、兜底触发计数，按 stage 分组。
  - 运行指标：运行总数与运行耗时，按 status（completed/partial）分组。
  - 缓存指标：条目数、占用字节、利用率、命中/未命中/驱逐/过期，
    从缓存层的统计快照整体刷新。
*/
package metrics
