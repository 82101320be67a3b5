// Package config 提供 researchflow 的统一配置：
// 默认值 → YAML 文件 → RESEARCHFLOW_ 前缀环境变量，逐层覆盖。
package config
