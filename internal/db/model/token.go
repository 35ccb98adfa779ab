package model

import "time"

const TokenCollection = "tokens"

type Token struct {
	ID          string    `bson:"_id"`
	Ticker      string    `bson:"ticker"`
	Name        string    `bson:"name"`
	Standard    string    `bson:"standard"`
	TotalSupply int64     `bson:"total_supply"`
	Decimals    uint8     `bson:"decimals"`
	Blockchain  string    `bson:"blockchain"`
	IsDeployed  bool      `bson:"is_deployed"`
	CreatedAt   time.Time `bson:"created_at"`
}
