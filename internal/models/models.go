package models

import (
	"encoding/json"
	"time"
)

// TxStatus represents the lifecycle state of a submitted transaction
type TxStatus string

const (
	TxStatusPending   TxStatus = "pending"
	TxStatusConfirmed TxStatus = "confirmed"
	TxStatusFailed    TxStatus = "failed"
)

// NetworkIdentity identifies the chain a deployment was made on
type NetworkIdentity struct {
	Name    string `json:"name"`
	ChainID uint64 `json:"chainId"`
}

// ContractEntry describes one deployed contract inside a DeploymentRecord
type ContractEntry struct {
	Name            string          `json:"name"`
	Address         string          `json:"address"`
	DeployTxHash    string          `json:"deployTxHash,omitempty"`
	ConstructorArgs []string        `json:"constructorArgs"`
	ABI             json.RawMessage `json:"abi"`
}

// DeploymentSettings is the non-secret part of the configuration used for a run
type DeploymentSettings struct {
	PlatformAddress string `json:"platformAddress"`
	PaymentToken    string `json:"paymentToken"`
	BaseURI         string `json:"uri"`
	GasLimit        uint64 `json:"gasLimit"`
	GasPrice        string `json:"gasPrice"`
	BindGasLimit    uint64 `json:"bindGasLimit"`
}

// DeploymentRecord is the immutable result of one successful deployment run.
// Contracts keep deployment order: hub first, asset second.
type DeploymentRecord struct {
	Network        string             `json:"network"`
	ChainID        uint64             `json:"chainId"`
	Deployer       string             `json:"deployer"`
	DeploymentTime time.Time          `json:"deploymentTime"`
	Contracts      []ContractEntry    `json:"contracts"`
	WiringTxHash   string             `json:"wiringTxHash,omitempty"`
	Config         DeploymentSettings `json:"config"`
}

// Contract returns the entry with the given name
func (r *DeploymentRecord) Contract(name string) (ContractEntry, bool) {
	for _, c := range r.Contracts {
		if c.Name == name {
			return c, true
		}
	}
	return ContractEntry{}, false
}

// EventField is one decoded event argument. Fields keep ABI input order.
type EventField struct {
	Name    string      `json:"name"`
	Value   interface{} `json:"value"`
	Indexed bool        `json:"indexed,omitempty"`
}

// DomainEvent is a decoded log entry emitted by a known contract
type DomainEvent struct {
	Name     string       `json:"name"`
	Fields   []EventField `json:"fields"`
	TxHash   string       `json:"txHash"`
	LogIndex uint         `json:"logIndex"`
	Address  string       `json:"address"`
}

// Field returns the value of the named field
func (e DomainEvent) Field(name string) (interface{}, bool) {
	for _, f := range e.Fields {
		if f.Name == name {
			return f.Value, true
		}
	}
	return nil, false
}

// DeploymentRow is the database representation of a stored record
type DeploymentRow struct {
	Key        string    `db:"key"`
	Network    string    `db:"network"`
	ChainID    int64     `db:"chain_id"`
	Deployer   string    `db:"deployer"`
	DeployedAt time.Time `db:"deployed_at"`
	Record     []byte    `db:"record"`
}
