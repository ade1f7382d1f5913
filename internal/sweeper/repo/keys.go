package repo

import "fmt"

// Keys 所有 redis key 都挂在同一个前缀下，wipe 时按前缀扫描
type Keys struct {
	Prefix string
}

func (k Keys) Session(addr string) string { return fmt.Sprintf("%s:session:%s", k.Prefix, addr) }
func (k Keys) Active() string             { return k.Prefix + ":sessions:active" }
func (k Keys) History(addr string) string { return fmt.Sprintf("%s:history:%s", k.Prefix, addr) }
func (k Keys) FeeCollector() string       { return k.Prefix + ":settings:feeCollector" }
func (k Keys) CycleLock() string          { return k.Prefix + ":lock:cycle" }
func (k Keys) All() string                { return k.Prefix + ":*" }
