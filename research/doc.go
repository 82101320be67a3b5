// 版权所有 2024 ResearchFlow Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 research 提供五个规范研究阶段的实现。

# 概述

每个阶段都是协作者接口之上的薄适配层：gather 调文献检索、
analyze 提炼主题与研究空白、process 做定量汇总、synthesize
生成假设、report 产出执行摘要。默认协作者为确定性的离线实现，
CLI 无需网络即可端到端运行；接入真实后端只需替换接口实现。

# 关键行为

  - gather 经 Memoizer 读写缓存，收到"需要更多来源"信号时
    自动放宽检索规模。
  - analyze 发现材料过少时通过通信总线请求补充来源。
  - 每个阶段注册确定性兜底产物，重试耗尽后流水线降级继续。
*/
package research
