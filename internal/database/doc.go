// 版权所有 2024 StemChat Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 database 提供基于 GORM 的连接池管理与事务执行。

# 核心类型

  - Pool：持有共享的 GORM DB 与底层 sql.DB，提供 DB()、Ping()、Stats()、
    Close() 等生命周期方法，后台定时探活。
  - PoolConfig：连接池与事务重试配置。
  - TxObserver：事务结果回调，cmd 中接入 Prometheus 指标。

# 事务

WithTransaction 执行单次事务；WithRetry 对死锁、序列化失败、
SQLite busy 等瞬时错误做指数退避重试。库存数量更新与流水写入
都通过 WithRetry 在同一事务内完成。
*/
package database
