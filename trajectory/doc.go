// 版权所有 2024 Lookahead Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 trajectory 提供智能体轨迹快照与轨迹跟踪器，用于判断预测缓存
的前提假设（朝向与位置）是否已经过期。

# 概述

Vector 是不可变的位置 + 朝向快照，提供角度差与曼哈顿距离计算。
Tracker 同时维护"当前"轨迹与"缓存有效"基线轨迹，每次 Update 时
将新轨迹与基线比较，任一偏差超过阈值即判定缓存失效并重置基线。

# 核心类型

  - Vector：轨迹快照（X、Y、Heading、CapturedAt），AngleTo 归一化到
    [0,180]，DistanceTo 为曼哈顿距离。
  - Tracker：轨迹跟踪器，Update 返回是否需要整体失效。
  - Thresholds：角度阈值（默认 45°）与距离阈值（默认 3.0）。

# 主要能力

  - 粗粒度对称阈值：小幅抖动不会触发失效，180° 掉头立即触发。
  - 前向锥判断：InForwardCone 判断目标点是否位于朝向两侧 halfAngle 内。
*/
package trajectory
