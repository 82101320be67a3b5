// 版权所有 2024 ResearchFlow Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 runstore 提供基于 SQLite 的运行历史持久化。

# 概述

每次流水线运行结束后，终态的摘要（查询、完成阶段、错误数、
恢复与完成标志、耗时）被写入一条 RunRecord。存储失败只记录
日志并返回错误，调用方将其视为非致命：运行历史是旁路能力，
从不影响运行本身的结果。

# 核心类型

  - Store：运行历史存储，内部使用 GORM 连接池，
    纯 Go SQLite 驱动，无 CGO 依赖。
  - RunRecord：单次运行的持久化快照。
*/
package runstore
