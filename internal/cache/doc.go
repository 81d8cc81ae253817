// 版权所有 2024 StemChat Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 cache 提供基于 Redis 的 JSON 缓存，供库存读路径使用。

  - Manager：持有 go-redis 客户端，提供 GetJSON/SetJSON/Delete/
    DeletePrefix/Ping/Close，所有键带统一前缀。
  - Observer：命中/未命中回调，cmd 中接入 Prometheus 指标。
  - ErrCacheMiss：未命中哨兵错误，配合 IsCacheMiss 判断。

缓存是可选的：redis.enabled 为 false 时库存直接读数据库。
*/
package cache
