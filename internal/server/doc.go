// Copyright (c) StemChat Authors.
// Licensed under the MIT License.

/*
Package server 管理 HTTP 服务器的生命周期。

[Manager] 封装 net/http.Server，非阻塞启动并在超时内优雅关闭；
StemChat 同时运行 api 与 metrics 两个实例。[WaitForShutdown]
监听 SIGINT/SIGTERM 或任一实例的异常退出，[ShutdownAll] 用
errgroup 并发执行各个关闭步骤并汇总错误。
*/
package server
