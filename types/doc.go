// 版权所有 2024 ResearchFlow Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 types 定义 researchflow 编排核心的共享数据模型：贯穿所有阶段的
流水线状态记录、阶段间消息以及结构化错误分类。

# 核心类型

  - PipelineState：单次运行的可变状态记录，由引擎与各阶段传递。
  - Message / MessageType：通信总线上的类型化消息。
  - Error / ErrorCode：带错误码与可重试标记的结构化错误。

本包不执行任何 I/O。工作流引擎、路由器、重试管理器与通信总线
均基于这些类型协作。
*/
package types
