package repositories

import (
	"errors"

	"taskflow/backend/internal/models"

	"github.com/gofrs/uuid"
	"gorm.io/gorm"
)

// UserRepository is the user directory. Every method takes the *gorm.DB to
// run on so callers can pass either the pool or an open transaction.
type UserRepository struct{}

func NewUserRepository() *UserRepository {
	return &UserRepository{}
}

func (r *UserRepository) Create(db *gorm.DB, user *models.User) error {
	return db.Create(user).Error
}

func (r *UserRepository) FindByEmail(db *gorm.DB, email string) (*models.User, error) {
	var user models.User
	if err := db.Where("email = ?", email).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *UserRepository) FindByID(db *gorm.DB, id uuid.UUID) (*models.User, error) {
	var user models.User
	if err := db.Where("id = ?", id).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// FindAllByIDs returns the users among ids that exist; unknown ids are
// skipped.
func (r *UserRepository) FindAllByIDs(db *gorm.DB, ids []uuid.UUID) ([]models.User, error) {
	if len(ids) == 0 {
		return []models.User{}, nil
	}

	var users []models.User
	if err := db.Where("id IN ?", ids).Find(&users).Error; err != nil {
		return nil, err
	}
	return users, nil
}

func (r *UserRepository) ExistsByEmail(db *gorm.DB, email string) (bool, error) {
	return r.exists(db, "email = ?", email)
}

func (r *UserRepository) ExistsByUsername(db *gorm.DB, username string) (bool, error) {
	return r.exists(db, "username = ?", username)
}

func (r *UserRepository) exists(db *gorm.DB, query string, arg interface{}) (bool, error) {
	var user models.User
	err := db.Select("id").Where(query, arg).Take(&user).Error
	if err == nil {
		return true, nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	return false, err
}
