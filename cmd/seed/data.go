package main

import (
	"mediacatalog/internal/catalog"
	"mediacatalog/internal/lookup"
)

func sampleCategories() []lookup.Category {
	return []lookup.Category{
		{Entry: lookup.Entry{Name: "Fiction", Description: "Fiction books"}},
		{Entry: lookup.Entry{Name: "Science", Description: "Science books"}},
		{Entry: lookup.Entry{Name: "Programming", Description: "Programming books"}},
		{Entry: lookup.Entry{Name: "Movies", Description: "Movie collection"}},
		{Entry: lookup.Entry{Name: "History", Description: "Historical books"}},
	}
}

func sampleGenres() []lookup.Genre {
	dvd := catalog.TypeDVD
	return []lookup.Genre{
		{Entry: lookup.Entry{Name: "Fantasy", Description: "Fantasy genre"}},
		{Entry: lookup.Entry{Name: "Thriller", Description: "Thriller genre"}},
		{Entry: lookup.Entry{Name: "Educational", Description: "Educational content"}},
		{Entry: lookup.Entry{Name: "Action", Description: "Action movies"}, ApplicableTo: &dvd},
		{Entry: lookup.Entry{Name: "Comedy", Description: "Comedy entertainment"}},
		{Entry: lookup.Entry{Name: "Biography", Description: "Biographical content"}},
	}
}

func sampleMedia() []catalog.Record {
	book := func(title, author, isbn, category, genre string, qty int) catalog.Record {
		return catalog.Record{Title: title, Author: author, ISBN: isbn, Type: catalog.TypeBook, Category: category, Genre: genre, Quantity: qty}
	}
	dvd := func(title, author, genre string, qty int) catalog.Record {
		return catalog.Record{Title: title, Author: author, Type: catalog.TypeDVD, Category: "Movies", Genre: genre, Quantity: qty}
	}
	return []catalog.Record{
		book("The Hobbit", "J.R.R. Tolkien", "978-0547928227", "Fiction", "Fantasy", 5),
		book("The Lord of the Rings: The Fellowship of the Ring", "J.R.R. Tolkien", "978-0547928210", "Fiction", "Fantasy", 3),
		dvd("Inception", "Christopher Nolan", "Thriller", 3),
		book("Clean Code", "Robert C. Martin", "978-0132350884", "Programming", "Educational", 2),
		book("Design Patterns", "Gang of Four", "978-0201633610", "Programming", "Educational", 1),
		dvd("The Matrix", "The Wachowskis", "Action", 2),
		book("Steve Jobs", "Walter Isaacson", "978-1451648539", "History", "Biography", 2),
		book("The Pragmatic Programmer", "Andrew Hunt, David Thomas", "978-0201616224", "Programming", "Educational", 3),
		dvd("Forrest Gump", "Robert Zemeckis", "Comedy", 1),
		book("The Art of Computer Programming Vol. 1", "Donald E. Knuth", "978-0201896831", "Programming", "Educational", 1),
	}
}
