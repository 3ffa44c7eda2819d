package repo

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tbourn/smartlang-chat/internal/domain"
)

// CreateUser inserts a user. An existing username is left untouched and no
// error is reported; created is false in that case.
func CreateUser(ctx context.Context, db *gorm.DB, username, password string) (created bool, err error) {
	u := &domain.User{Username: username, Password: password}
	res := db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "username"}}, DoNothing: true}).
		Create(u)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// AuthenticateUser returns the user whose username and password both match
// exactly, or ErrNotFound.
func AuthenticateUser(ctx context.Context, db *gorm.DB, username, password string) (*domain.User, error) {
	var u domain.User
	err := db.WithContext(ctx).
		Where("username = ? AND password = ?", username, password).
		First(&u).Error
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// GetUser fetches a user by primary key.
func GetUser(ctx context.Context, db *gorm.DB, id uint) (*domain.User, error) {
	var u domain.User
	if err := db.WithContext(ctx).First(&u, id).Error; err != nil {
		return nil, err
	}
	return &u, nil
}
