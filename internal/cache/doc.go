// 版权所有 2024 ResearchFlow Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 cache 提供内容寻址、容量受限、支持 TTL 过期的键值缓存，
用于记忆化昂贵的外部调用（文献检索、LLM 推理等）。

# 核心类型

  - Store：缓存后端接口（Get/Set/Delete/ClearExpired/Stats/Close）。
  - DiskStore：目录 + 元数据索引文件的磁盘实现，LRU 按最近访问
    时间淘汰，TTL 过期惰性清理。索引缺失或损坏时按空缓存处理。
  - RedisStore：基于 go-redis 的进程外实现，TTL 由 Redis 原生管理。
  - Memoizer：围绕 Store 的记忆化辅助，singleflight 合并并发的
    相同请求，msgpack 编解码。

# 失败语义

缓存是优化而非正确性依赖：Get 的 I/O 失败降级为未命中，Set 的
I/O 失败降级为空操作，两者只记录日志，从不中断调用方。

此包为内部包，不应被外部项目导入。
*/
package cache
