// Copyright (c) StemChat Authors.
// Licensed under the MIT License.

/*
Package migration 管理 StemChat 的数据库 Schema 版本，基于 golang-migrate。

迁移文件按方言内嵌在 migrations/{postgres,mysql,sqlite} 下：

  - 000001_users_messages：users 与 messages
  - 000002_inventory：inventory_items、inventory_transactions、suppliers
  - 000003_lesson_plans：lesson_plans

SQLite 连接使用纯 Go 驱动（注册名 "sqlite"），无需 CGO。

[CLI] 为 "stemchat migrate up|down|status|version|goto|force|reset"
提供格式化输出。
*/
package migration
