package model

type KVEntry struct {
	Key       string  `gorm:"column:key;type:text;primaryKey"`
	Value     string  `gorm:"column:value;type:text;not null"`
	ExpiresAt *string `gorm:"column:expires_at;type:text;index"`
	UpdatedAt string  `gorm:"column:updated_at;type:text;not null"`
}

func (KVEntry) TableName() string {
	return "kv_entries"
}
