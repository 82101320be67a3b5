// Copyright (c) ResearchFlow Authors.
// Licensed under the MIT License.

/*
Package main 提供 ResearchFlow 命令行程序入口。

# 概述

cmd/researchflow 是研究流水线编排引擎的可执行入口，提供单次运行、
运行历史查询和版本信息等子命令。程序支持 YAML 配置文件加载与
RESEARCHFLOW_ 前缀环境变量覆盖、结构化日志（zap）、Prometheus
指标采集、磁盘或 Redis 缓存后端以及 SQLite 运行历史。

# 退出码约定

  - 0  — 运行结束（包括经兜底恢复的降级完成）
  - 1  — 无法构造初始状态：查询非法、配置或装配失败
*/
package main
