package postgres

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/jinford/doc-rag/internal/core/vectorstore"
)

// UUIDToPgtype converts uuid.UUID to pgtype.UUID
func UUIDToPgtype(id uuid.UUID) pgtype.UUID {
	return pgtype.UUID{Bytes: id, Valid: true}
}

// PgtypeToUUID converts pgtype.UUID to uuid.UUID
func PgtypeToUUID(id pgtype.UUID) uuid.UUID {
	return id.Bytes
}

// DecodePayload converts a jsonb payload column to vectorstore.Payload
func DecodePayload(raw []byte) (vectorstore.Payload, error) {
	var payload vectorstore.Payload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return vectorstore.Payload{}, fmt.Errorf("decode payload: %w", err)
	}
	return payload, nil
}
