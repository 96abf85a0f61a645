package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/bigkaa/golibrary/internal/database"
	"github.com/bigkaa/golibrary/internal/domain/model"
)

// UserRepository — интерфейс CRUD для коллекции users.
type UserRepository interface {
	// Create создаёт нового пользователя.
	Create(ctx context.Context, user *model.User) error
	// GetByID возвращает пользователя по идентификатору документа.
	GetByID(ctx context.Context, id string) (*model.User, error)
	// GetByUsername возвращает пользователя по username.
	GetByUsername(ctx context.Context, username string) (*model.User, error)
	// List возвращает страницу пользователей и общее количество.
	List(ctx context.Context, limit, offset int) ([]*model.User, int64, error)
	// Update обновляет роль и/или хэш пароля пользователя.
	Update(ctx context.Context, user *model.User) error
	// Delete удаляет пользователя.
	Delete(ctx context.Context, id string) error
	// Count возвращает количество пользователей.
	Count(ctx context.Context) (int64, error)
}

// userRepo — реализация UserRepository поверх MongoDB.
type userRepo struct {
	col *mongo.Collection
}

// NewUserRepository создаёт репозиторий пользователей.
func NewUserRepository(db *mongo.Database) UserRepository {
	return &userRepo{col: db.Collection(database.UsersCollection)}
}

func (r *userRepo) Create(ctx context.Context, user *model.User) error {
	now := time.Now().UTC()
	user.CreatedAt = now
	user.UpdatedAt = now

	res, err := r.col.InsertOne(ctx, user)
	if err != nil {
		if isDuplicateKey(err) {
			return fmt.Errorf("%w: пользователь %q уже существует", ErrConflict, user.Username)
		}
		return fmt.Errorf("ошибка создания пользователя: %w", err)
	}

	if oid, ok := res.InsertedID.(primitive.ObjectID); ok {
		user.ID = oid
	}
	return nil
}

func (r *userRepo) GetByID(ctx context.Context, id string) (*model.User, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, fmt.Errorf("%w: некорректный идентификатор %q", ErrNotFound, id)
	}

	user := &model.User{}
	err = r.col.FindOne(ctx, bson.M{"_id": oid}).Decode(user)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("%w: пользователь %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения пользователя: %w", err)
	}
	return user, nil
}

func (r *userRepo) GetByUsername(ctx context.Context, username string) (*model.User, error) {
	user := &model.User{}
	err := r.col.FindOne(ctx, bson.M{"username": username}).Decode(user)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("%w: пользователь %q", ErrNotFound, username)
	}
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения пользователя: %w", err)
	}
	return user, nil
}

func (r *userRepo) List(ctx context.Context, limit, offset int) ([]*model.User, int64, error) {
	total, err := r.col.CountDocuments(ctx, bson.M{})
	if err != nil {
		return nil, 0, fmt.Errorf("ошибка подсчёта пользователей: %w", err)
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "username", Value: 1}}).
		SetLimit(int64(limit)).
		SetSkip(int64(offset))

	cursor, err := r.col.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, 0, fmt.Errorf("ошибка листинга пользователей: %w", err)
	}
	defer cursor.Close(ctx)

	users := make([]*model.User, 0, limit)
	if err := cursor.All(ctx, &users); err != nil {
		return nil, 0, fmt.Errorf("ошибка декодирования пользователей: %w", err)
	}
	return users, total, nil
}

func (r *userRepo) Update(ctx context.Context, user *model.User) error {
	user.UpdatedAt = time.Now().UTC()

	update := bson.M{"$set": bson.M{
		"password":   user.PasswordHash,
		"role":       user.Role,
		"updated_at": user.UpdatedAt,
	}}

	res, err := r.col.UpdateOne(ctx, bson.M{"_id": user.ID}, update)
	if err != nil {
		return fmt.Errorf("ошибка обновления пользователя: %w", err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("%w: пользователь %s", ErrNotFound, user.ID.Hex())
	}
	return nil
}

func (r *userRepo) Delete(ctx context.Context, id string) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return fmt.Errorf("%w: некорректный идентификатор %q", ErrNotFound, id)
	}

	res, err := r.col.DeleteOne(ctx, bson.M{"_id": oid})
	if err != nil {
		return fmt.Errorf("ошибка удаления пользователя: %w", err)
	}
	if res.DeletedCount == 0 {
		return fmt.Errorf("%w: пользователь %s", ErrNotFound, id)
	}
	return nil
}

func (r *userRepo) Count(ctx context.Context) (int64, error) {
	total, err := r.col.CountDocuments(ctx, bson.M{})
	if err != nil {
		return 0, fmt.Errorf("ошибка подсчёта пользователей: %w", err)
	}
	return total, nil
}
