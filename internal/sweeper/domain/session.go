package domain

import (
	"strings"
	"time"

	"github.com/segmentio/encoding/json"
)

// DestinationConfig 用户选择的目标链/收款地址/目标币种
type DestinationConfig struct {
	DestinationChainID uint64 `json:"destinationChainId"`
	RecipientIsSelf    bool   `json:"recipientIsSelf"`
	RecipientAddress   string `json:"recipientAddress"`
	// 为空表示和输入币种一致
	RecipientTokenSymbol string `json:"recipientTokenSymbol,omitempty"`
}

// Recipient 最终收款地址，RecipientIsSelf 时就是账户本身
func (d DestinationConfig) Recipient(owner string) string {
	if d.RecipientIsSelf || d.RecipientAddress == "" {
		return owner
	}
	return d.RecipientAddress
}

// AccountSession 每个被监控地址一条记录，key 为小写地址
type AccountSession struct {
	Address              string `json:"address"`
	EncryptedSessionKey  string `json:"encryptedSessionKey"`
	SessionSignerAddress string `json:"sessionSignerAddress"`
	// 外部授权接口返回的原始结构，只存储和转发，不解析
	PermissionGrant json.RawMessage   `json:"permissionGrant"`
	Destination     DestinationConfig `json:"destinationConfig"`
	SchemaVersion   int               `json:"schemaVersion"`
	RegisteredAt    time.Time         `json:"registeredAt"`
	LastPolledAt    *time.Time        `json:"lastPolledAt,omitempty"`
	Active          bool              `json:"active"`
}

// SessionPatch 浅合并更新，nil 字段不改
type SessionPatch struct {
	EncryptedSessionKey  *string
	SessionSignerAddress *string
	PermissionGrant      json.RawMessage
	Destination          *DestinationConfig
	SchemaVersion        *int
	LastPolledAt         *time.Time
	Active               *bool
}

// Apply 把 patch 合并到 s 上
func (p SessionPatch) Apply(s *AccountSession) {
	if p.EncryptedSessionKey != nil {
		s.EncryptedSessionKey = *p.EncryptedSessionKey
	}
	if p.SessionSignerAddress != nil {
		s.SessionSignerAddress = *p.SessionSignerAddress
	}
	if p.PermissionGrant != nil {
		s.PermissionGrant = p.PermissionGrant
	}
	if p.Destination != nil {
		s.Destination = *p.Destination
	}
	if p.SchemaVersion != nil {
		s.SchemaVersion = *p.SchemaVersion
	}
	if p.LastPolledAt != nil {
		t := *p.LastPolledAt
		s.LastPolledAt = &t
	}
	if p.Active != nil {
		s.Active = *p.Active
	}
}

// NormalizeAddress 注册表统一使用小写地址做 key
func NormalizeAddress(addr string) string {
	return strings.ToLower(strings.TrimSpace(addr))
}
