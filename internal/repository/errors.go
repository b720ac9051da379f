package repository

import "errors"

// ErrAlreadyExists запись с таким уникальным ключом уже есть
var ErrAlreadyExists = errors.New("record already exists")
