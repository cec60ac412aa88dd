package sqlstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/aretw0/funnel/internal/compiler"
	"github.com/aretw0/funnel/internal/dto"
	"github.com/aretw0/funnel/pkg/domain"
	"gorm.io/gorm"
)

// DefinitionStore implements ports.DefinitionStore over the funnels and
// funnel_nodes tables. The engine only reads; Import exists for seeding and
// for the CLI.
type DefinitionStore struct {
	db     *gorm.DB
	parser *compiler.Parser
}

// NewDefinitionStore wraps an opened and migrated database.
func NewDefinitionStore(db *gorm.DB) *DefinitionStore {
	return &DefinitionStore{db: db, parser: compiler.NewParser()}
}

func (s *DefinitionStore) GetFunnel(ctx context.Context, id string) (*domain.FunnelDefinition, error) {
	db := s.db.WithContext(ctx)

	var f funnelRow
	if err := db.Where("id = ?", id).Take(&f).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("funnel %q: %w", id, domain.ErrFunnelNotFound)
		}
		return nil, fmt.Errorf("get funnel: %w", err)
	}

	var rows []nodeRow
	if err := db.Where("funnel_id = ?", id).Order("position ASC, id ASC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("get funnel nodes: %w", err)
	}

	doc := dto.FunnelDocument{ID: f.ID, Name: f.Name, Status: f.Status}
	for _, r := range rows {
		pos := r.Position
		nd := dto.NodeDocument{ID: r.ID, Type: r.Type, Position: &pos}
		if r.Content != "" {
			if err := json.Unmarshal([]byte(r.Content), &nd.Content); err != nil {
				return nil, fmt.Errorf("funnel %s: node %s content: %w", id, r.ID, err)
			}
		}
		doc.Nodes = append(doc.Nodes, nd)
	}
	return s.parser.Compile(doc)
}

func (s *DefinitionStore) ListFunnels(ctx context.Context) ([]string, error) {
	var ids []string
	if err := s.db.WithContext(ctx).Model(&funnelRow{}).Order("id ASC").Pluck("id", &ids).Error; err != nil {
		return nil, fmt.Errorf("list funnels: %w", err)
	}
	return ids, nil
}

// Import replaces a funnel and all of its nodes.
func (s *DefinitionStore) Import(ctx context.Context, def domain.FunnelDefinition) error {
	doc := compiler.Flatten(def)
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		f := funnelRow{ID: doc.ID, Name: doc.Name, Status: doc.Status}
		if err := tx.Save(&f).Error; err != nil {
			return fmt.Errorf("save funnel: %w", err)
		}
		if err := tx.Where("funnel_id = ?", doc.ID).Delete(&nodeRow{}).Error; err != nil {
			return fmt.Errorf("clear nodes: %w", err)
		}
		for _, nd := range doc.Nodes {
			content, err := json.Marshal(nd.Content)
			if err != nil {
				return fmt.Errorf("node %s content: %w", nd.ID, err)
			}
			row := nodeRow{
				ID:       nd.ID,
				FunnelID: doc.ID,
				Type:     nd.Type,
				Position: *nd.Position,
				Content:  string(content),
			}
			if err := tx.Create(&row).Error; err != nil {
				return fmt.Errorf("create node %s: %w", nd.ID, err)
			}
		}
		return nil
	})
}
