package domain

import (
	"context"
)

type UpsertRequest struct {
	Name    string `json:"-"`
	Kind    string `json:"kind"`
	Ordinal int    `json:"ordinal"`
	Value   string `json:"value"`
}

type Service interface {
	Current(ctx context.Context) (Snapshot, error)
	List(ctx context.Context) ([]Configuration, error)
	Upsert(ctx context.Context, req UpsertRequest) (*Configuration, error)
}
