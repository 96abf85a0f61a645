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

// BookRepository — интерфейс CRUD для коллекции books.
type BookRepository interface {
	// Create создаёт запись книги.
	Create(ctx context.Context, book *model.Book) error
	// GetByID возвращает книгу по идентификатору документа.
	GetByID(ctx context.Context, id string) (*model.Book, error)
	// List возвращает страницу книг (сортировка по title) и общее количество.
	List(ctx context.Context, limit, offset int) ([]*model.Book, int64, error)
	// Update обновляет запись книги.
	Update(ctx context.Context, book *model.Book) error
	// Delete удаляет запись книги.
	Delete(ctx context.Context, id string) error
	// ListFilePaths возвращает file_path всех книг.
	// Используется сборщиком осиротевших файлов.
	ListFilePaths(ctx context.Context) ([]string, error)
	// Count возвращает количество книг.
	Count(ctx context.Context) (int64, error)
}

// bookRepo — реализация BookRepository поверх MongoDB.
type bookRepo struct {
	col *mongo.Collection
}

// NewBookRepository создаёт репозиторий книг.
func NewBookRepository(db *mongo.Database) BookRepository {
	return &bookRepo{col: db.Collection(database.BooksCollection)}
}

func (r *bookRepo) Create(ctx context.Context, book *model.Book) error {
	now := time.Now().UTC()
	book.CreatedAt = now
	book.UpdatedAt = now

	res, err := r.col.InsertOne(ctx, book)
	if err != nil {
		return fmt.Errorf("ошибка создания книги: %w", err)
	}

	if oid, ok := res.InsertedID.(primitive.ObjectID); ok {
		book.ID = oid
	}
	return nil
}

func (r *bookRepo) GetByID(ctx context.Context, id string) (*model.Book, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, fmt.Errorf("%w: некорректный идентификатор %q", ErrNotFound, id)
	}

	book := &model.Book{}
	err = r.col.FindOne(ctx, bson.M{"_id": oid}).Decode(book)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("%w: книга %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения книги: %w", err)
	}
	return book, nil
}

func (r *bookRepo) List(ctx context.Context, limit, offset int) ([]*model.Book, int64, error) {
	total, err := r.col.CountDocuments(ctx, bson.M{})
	if err != nil {
		return nil, 0, fmt.Errorf("ошибка подсчёта книг: %w", err)
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "title", Value: 1}, {Key: "_id", Value: 1}}).
		SetLimit(int64(limit)).
		SetSkip(int64(offset))

	cursor, err := r.col.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, 0, fmt.Errorf("ошибка листинга книг: %w", err)
	}
	defer cursor.Close(ctx)

	books := make([]*model.Book, 0, limit)
	if err := cursor.All(ctx, &books); err != nil {
		return nil, 0, fmt.Errorf("ошибка декодирования книг: %w", err)
	}
	return books, total, nil
}

func (r *bookRepo) Update(ctx context.Context, book *model.Book) error {
	book.UpdatedAt = time.Now().UTC()

	update := bson.M{"$set": bson.M{
		"title":             book.Title,
		"author":            book.Author,
		"file_path":         book.FilePath,
		"original_filename": book.OriginalFilename,
		"content_type":      book.ContentType,
		"size":              book.Size,
		"checksum":          book.Checksum,
		"updated_at":        book.UpdatedAt,
	}}

	res, err := r.col.UpdateOne(ctx, bson.M{"_id": book.ID}, update)
	if err != nil {
		return fmt.Errorf("ошибка обновления книги: %w", err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("%w: книга %s", ErrNotFound, book.ID.Hex())
	}
	return nil
}

func (r *bookRepo) Delete(ctx context.Context, id string) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return fmt.Errorf("%w: некорректный идентификатор %q", ErrNotFound, id)
	}

	res, err := r.col.DeleteOne(ctx, bson.M{"_id": oid})
	if err != nil {
		return fmt.Errorf("ошибка удаления книги: %w", err)
	}
	if res.DeletedCount == 0 {
		return fmt.Errorf("%w: книга %s", ErrNotFound, id)
	}
	return nil
}

func (r *bookRepo) ListFilePaths(ctx context.Context) ([]string, error) {
	opts := options.Find().SetProjection(bson.M{"file_path": 1})

	cursor, err := r.col.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("ошибка листинга file_path: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []struct {
		FilePath string `bson:"file_path"`
	}
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("ошибка декодирования file_path: %w", err)
	}

	paths := make([]string, 0, len(docs))
	for _, d := range docs {
		if d.FilePath != "" {
			paths = append(paths, d.FilePath)
		}
	}
	return paths, nil
}

func (r *bookRepo) Count(ctx context.Context) (int64, error) {
	total, err := r.col.CountDocuments(ctx, bson.M{})
	if err != nil {
		return 0, fmt.Errorf("ошибка подсчёта книг: %w", err)
	}
	return total, nil
}
