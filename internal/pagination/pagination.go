// Package pagination режет упорядоченные выборки на пронумерованные страницы.
//
// Страницы нумеруются с 1. Не число дает первую страницу, а номер вне
// допустимого диапазона дает последнюю, поэтому параметр page никогда не
// приводит к ошибке запроса.
package pagination

import (
	"errors"
	"math"
	"strconv"
	"strings"
)

const DefaultPageSize = 10

// Page - одна страница выборки вместе с данными для навигации.
type Page[T any] struct {
	Items       []T  `json:"items"`
	Number      int  `json:"pageNumber"`
	NumPages    int  `json:"numPages"`
	TotalCount  int  `json:"totalCount"`
	HasNext     bool `json:"hasNext"`
	HasPrevious bool `json:"hasPrevious"`
}

// Window - вычисленное положение страницы внутри выборки.
type Window struct {
	Number   int
	NumPages int
	Offset   int
	Limit    int
}

// Paginator вычисляет окна для фиксированного размера страницы.
type Paginator struct {
	PerPage int
}

func New(perPage int) Paginator {
	if perPage < 1 {
		perPage = DefaultPageSize
	}
	return Paginator{PerPage: perPage}
}

// NumPages возвращает число страниц для total элементов. У пустой выборки
// все равно одна (пустая) страница.
func (p Paginator) NumPages(total int) int {
	if total <= 0 {
		return 1
	}
	return (total + p.PerPage - 1) / p.PerPage
}

// Resolve приводит number к [1, NumPages(total)]: номера вне диапазона
// становятся последней страницей.
func (p Paginator) Resolve(total, number int) Window {
	pages := p.NumPages(total)
	if number < 1 || number > pages {
		number = pages
	}
	return Window{
		Number:   number,
		NumPages: pages,
		Offset:   (number - 1) * p.PerPage,
		Limit:    p.PerPage,
	}
}

// ParseNumber разбирает сырой параметр page. Все, что не целое число, включая
// пустую строку, дает 1. Число, не влезающее в int, дает math.MaxInt, и
// Resolve превращает его в последнюю страницу.
func ParseNumber(raw string) int {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if errors.Is(err, strconv.ErrRange) {
		return math.MaxInt
	}
	if err != nil {
		return 1
	}
	return n
}

// NewPage собирает Page из элементов, загруженных для w.
func NewPage[T any](items []T, w Window, total int) *Page[T] {
	if items == nil {
		items = []T{}
	}
	return &Page[T]{
		Items:       items,
		Number:      w.Number,
		NumPages:    w.NumPages,
		TotalCount:  total,
		HasNext:     w.Number < w.NumPages,
		HasPrevious: w.Number > 1,
	}
}

// Map преобразует элементы страницы, сохраняя метаданные.
func Map[T, U any](p *Page[T], fn func(T) U) *Page[U] {
	out := make([]U, len(p.Items))
	for i, it := range p.Items {
		out[i] = fn(it)
	}
	return &Page[U]{
		Items:       out,
		Number:      p.Number,
		NumPages:    p.NumPages,
		TotalCount:  p.TotalCount,
		HasNext:     p.HasNext,
		HasPrevious: p.HasPrevious,
	}
}
