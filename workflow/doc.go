// 版权所有 2024 ResearchFlow Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 workflow 实现有状态的研究流水线编排核心：有向阶段图执行器、
动态路由决策、重试与恢复子系统，以及阶段间通信总线。

# 控制流

	Engine → Router（决策）→ Stage（经 RetryManager 执行，
	可查询缓存、可经 Bus 发消息）→ 状态变更 → 回到 Router，
	直到返回终止路由或触发全局限制。

# 核心类型

  - Graph：命名阶段与边的不可变集合，仅用于校验；调度完全由
    Router 决定。
  - Router：对 PipelineState 的纯决策函数，按严格优先级产出
    RouteDecision；重入按"每原因一次"集中计数以保证终止。
  - RetryManager：带指数退避与抖动的有界重试；重试耗尽后由
    阶段专属的 FallbackProducer 兜底，流水线降级继续而非中断。
  - Bus：类型化消息分发，只在 PipelineState 上记录意图，
    从不直接回调阶段；把意图变为再调度是 Router 的唯一职责。
  - Engine：主循环，强制全局错误上限与墙钟超时，引擎边界以下
    的任何失败都折叠为状态变更，从不抛给调用方。
*/
package workflow
