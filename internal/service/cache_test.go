package service

import (
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/bigkaa/golibrary/internal/domain/model"
)

func testBook(title string) *model.Book {
	return &model.Book{
		ID:     primitive.NewObjectID(),
		Title:  title,
		Author: "Автор",
	}
}

func TestCacheSetGet(t *testing.T) {
	cache := NewCacheService(10, time.Minute)
	book := testBook("Мастер и Маргарита")

	cache.Set(book.ID.Hex(), book)

	got, ok := cache.Get(book.ID.Hex())
	if !ok {
		t.Fatal("ожидалось попадание в кэш")
	}
	if got.Title != book.Title {
		t.Errorf("title: ожидалось %q, получено %q", book.Title, got.Title)
	}
}

func TestCacheMiss(t *testing.T) {
	cache := NewCacheService(10, time.Minute)

	if _, ok := cache.Get("несуществующий-id"); ok {
		t.Error("ожидался промах кэша")
	}
}

func TestCacheDelete(t *testing.T) {
	cache := NewCacheService(10, time.Minute)
	book := testBook("Удаляемая запись")

	cache.Set(book.ID.Hex(), book)
	cache.Delete(book.ID.Hex())

	if _, ok := cache.Get(book.ID.Hex()); ok {
		t.Error("запись должна быть удалена из кэша")
	}
}

func TestCacheTTLExpiry(t *testing.T) {
	cache := NewCacheService(10, 50*time.Millisecond)
	book := testBook("Истекающая запись")

	cache.Set(book.ID.Hex(), book)
	time.Sleep(120 * time.Millisecond)

	if _, ok := cache.Get(book.ID.Hex()); ok {
		t.Error("запись должна истечь по TTL")
	}
}

func TestCacheEviction(t *testing.T) {
	cache := NewCacheService(2, time.Minute)

	b1 := testBook("Первая")
	b2 := testBook("Вторая")
	b3 := testBook("Третья")

	cache.Set(b1.ID.Hex(), b1)
	cache.Set(b2.ID.Hex(), b2)
	cache.Set(b3.ID.Hex(), b3)

	// При ёмкости 2 самая старая запись вытесняется
	if _, ok := cache.Get(b1.ID.Hex()); ok {
		t.Error("самая старая запись должна быть вытеснена")
	}
	if _, ok := cache.Get(b3.ID.Hex()); !ok {
		t.Error("свежая запись должна остаться в кэше")
	}
}
