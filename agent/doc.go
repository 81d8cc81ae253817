// Copyright (c) StemChat Authors.
// Licensed under the MIT License.

/*
Package agent 定义聊天机器人背后的意图 Agent。

# 概述

每个 Agent 对一条消息给出 [0,1] 的置信度（Assess），由 router 选出
得分最高者执行（Execute）。Agent 只通过 [Store] 读写库存，不持有状态，
可以被多个请求并发调用。

# 核心类型

  - [Agent]：Name / Description / Capabilities / Assess / Execute
  - [InventoryAgent]：库存查询、低库存扫描、订购建议
  - [LessonPlanAgent]：按学科、年级与关键词检索课程计划
  - [Classify]：把消息归入 stock_check、low_stock、order 等意图，
    并抽取物料名
  - [Result]：回复文本、Actions 与结构化 Data

# 物料名解析

消息中的物料名经过去停用词和单复数归一化后，先做精确匹配，
再取互为子串的名称按编辑距离排序。距离并列的不同名称视为歧义，
无候选时给出最多三个相近名称。
*/
package agent
