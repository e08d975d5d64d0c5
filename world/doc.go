// 版权所有 2024 Lookahead Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 world 提供一个可并发访问的二维世界模拟，实现 precache.WorldModel，
供命令行演示与集成测试驱动预测缓存引擎。

# 核心类型

  - Sim：智能体位置、朝向与目标集合。MoveTo / Turn / Face / Step 改变
    轨迹，AddTarget / RemoveTarget 维护目标，NearbyTargets 按曼哈顿
    半径过滤（半径为 0 表示全部）。
*/
package world
