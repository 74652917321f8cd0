package repository

import (
	"context"
	"errors"

	"pricetrack/tracker-service/internal/app/tracker/entity"

	"gorm.io/gorm"
)

type groupRepository struct {
	db *gorm.DB
}

// NewGroupRepository creates the gorm-backed equivalence group repository.
func NewGroupRepository(db *gorm.DB) GroupRepository {
	return &groupRepository{db: db}
}

func (r *groupRepository) CreateGroup(ctx context.Context, group *entity.EquivalenceGroup) error {
	return r.db.WithContext(ctx).Create(group).Error
}

func (r *groupRepository) GetGroup(ctx context.Context, id uint) (*entity.EquivalenceGroup, error) {
	var group entity.EquivalenceGroup
	err := r.db.WithContext(ctx).Preload("Members").First(&group, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrGroupNotFound
	}
	if err != nil {
		return nil, err
	}
	return &group, nil
}

func (r *groupRepository) ListGroups(ctx context.Context) ([]entity.GroupSummary, error) {
	var groups []entity.EquivalenceGroup
	if err := r.db.WithContext(ctx).Order("id").Find(&groups).Error; err != nil {
		return nil, err
	}
	if len(groups) == 0 {
		return nil, nil
	}

	var counts []struct {
		GroupID uint
		Total   int
	}
	err := r.db.WithContext(ctx).Model(&entity.GroupMember{}).
		Select("group_id, COUNT(*) AS total").
		Group("group_id").
		Scan(&counts).Error
	if err != nil {
		return nil, err
	}

	countByGroup := make(map[uint]int, len(counts))
	for _, c := range counts {
		countByGroup[c.GroupID] = c.Total
	}

	summaries := make([]entity.GroupSummary, 0, len(groups))
	for _, g := range groups {
		summaries = append(summaries, entity.GroupSummary{
			ID:            g.ID,
			CanonicalName: g.CanonicalName,
			Origin:        g.Origin,
			MemberCount:   countByGroup[g.ID],
		})
	}
	return summaries, nil
}

func (r *groupRepository) ListGroupsWithMembers(ctx context.Context) ([]entity.EquivalenceGroup, error) {
	var groups []entity.EquivalenceGroup
	if err := r.db.WithContext(ctx).Preload("Members").Order("id").Find(&groups).Error; err != nil {
		return nil, err
	}
	return groups, nil
}

func (r *groupRepository) UpdateGroupOrigin(ctx context.Context, id uint, origin string) error {
	result := r.db.WithContext(ctx).Model(&entity.EquivalenceGroup{}).
		Where("id = ?", id).
		Update("origin", origin)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrGroupNotFound
	}
	return nil
}

func (r *groupRepository) GetMembership(ctx context.Context, productID uint) (*entity.GroupMember, error) {
	var member entity.GroupMember
	err := r.db.WithContext(ctx).Where("product_id = ?", productID).First(&member).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrGroupNotFound
	}
	if err != nil {
		return nil, err
	}
	return &member, nil
}

func (r *groupRepository) ListMemberships(ctx context.Context) ([]entity.GroupMember, error) {
	var members []entity.GroupMember
	if err := r.db.WithContext(ctx).Order("product_id").Find(&members).Error; err != nil {
		return nil, err
	}
	return members, nil
}

func (r *groupRepository) ReplaceMembership(ctx context.Context, member *entity.GroupMember) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("product_id = ?", member.ProductID).Delete(&entity.GroupMember{}).Error; err != nil {
			return err
		}
		return tx.Create(member).Error
	})
}

func (r *groupRepository) RemoveMembership(ctx context.Context, productID uint) error {
	result := r.db.WithContext(ctx).Where("product_id = ?", productID).Delete(&entity.GroupMember{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrGroupNotFound
	}
	return nil
}
