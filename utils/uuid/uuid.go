package uuid

import (
	"strings"

	"github.com/bwmarrin/snowflake"
	guuid "github.com/google/uuid"
)

// ID生成：雪花ID用于历史记录等高频写入，uuid用于对外暴露的资源ID

type SnowNode struct {
	node *snowflake.Node
}

// NewNode 创建一个雪花ID节点，machineId取值 0~1023
func NewNode(machineId int64) *SnowNode {
	node, err := snowflake.NewNode(machineId)
	if err != nil {
		panic(err)
	}
	return &SnowNode{node: node}
}

// GenSnowID 生成一个趋势递增的int64 ID
func (s *SnowNode) GenSnowID() int64 {
	return s.node.Generate().Int64()
}

// GenUUID 生成一个标准uuid字符串
func GenUUID() string {
	return guuid.NewString()
}

// GenUUID16 生成16位的短id（去掉连字符后截断），用于requestId等
func GenUUID16() string {
	s := strings.ReplaceAll(guuid.NewString(), "-", "")
	return s[:16]
}
