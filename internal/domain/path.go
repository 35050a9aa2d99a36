package domain

import (
	"regexp"
	"strings"
)

// DeletedMarker - префикс пути, помечающий ветку под удалённым предком
const DeletedMarker = "deleted_"

const (
	pathSeparator    = "."
	identifierMinLen = 2
	identifierMaxLen = 150
)

var (
	segmentPattern = regexp.MustCompile(`^[a-z0-9_]+$`)
	pathPattern    = regexp.MustCompile(`^[a-z0-9_]+(\.[a-z0-9_]+)*$`)
)

// Identifier - уникальный сегмент пути подразделения
type Identifier string

// NewIdentifier нормализует и проверяет идентификатор
func NewIdentifier(raw string) (Identifier, error) {
	id := strings.ToLower(strings.TrimSpace(raw))
	if len(id) < identifierMinLen || len(id) > identifierMaxLen {
		return "", ErrInvalidIdentifier
	}
	if !segmentPattern.MatchString(id) || strings.HasPrefix(id, DeletedMarker) {
		return "", ErrInvalidIdentifier
	}
	return Identifier(id), nil
}

func (i Identifier) String() string {
	return string(i)
}

// Path - материализованный путь: цепочка идентификаторов предков через точку
type Path string

// NewPath проверяет строку пути, включая возможный маркер удаления
func NewPath(raw string) (Path, error) {
	if raw == "" {
		return "", ErrInvalidPath
	}
	if !pathPattern.MatchString(raw) {
		return "", ErrInvalidPath
	}
	return Path(raw), nil
}

// NewRootPath строит путь корневого подразделения
func NewRootPath(identifier Identifier) (Path, error) {
	return NewPath(identifier.String())
}

// Child добавляет сегмент к пути
func (p Path) Child(identifier Identifier) (Path, error) {
	if p == "" {
		return "", ErrInvalidPath
	}
	return NewPath(string(p) + pathSeparator + identifier.String())
}

// Parent возвращает путь родителя; false для корня
func (p Path) Parent() (Path, bool) {
	idx := strings.LastIndex(string(p), pathSeparator)
	if idx < 0 {
		return "", false
	}
	return p[:idx], true
}

// IsDeleted сообщает, несёт ли путь маркер удаления
func (p Path) IsDeleted() bool {
	return strings.HasPrefix(string(p), DeletedMarker)
}

// AddDeletedMarker помечает путь; повторная пометка - ошибка валидации
func (p Path) AddDeletedMarker() (Path, error) {
	if p.IsDeleted() {
		return "", ErrPathAlreadyDeleted
	}
	return NewPath(DeletedMarker + string(p))
}

// RemoveDeletedMarker снимает пометку
func (p Path) RemoveDeletedMarker() (Path, error) {
	if !p.IsDeleted() {
		return "", ErrPathNotDeleted
	}
	return NewPath(strings.TrimPrefix(string(p), DeletedMarker))
}

// Undecorated - путь без маркера удаления
func (p Path) Undecorated() string {
	return strings.TrimPrefix(string(p), DeletedMarker)
}

// Depth - число разделителей в пути без маркера
func (p Path) Depth() int {
	return strings.Count(p.Undecorated(), pathSeparator)
}

// IsDescendantOf проверяет префикс по границе сегмента
func (p Path) IsDescendantOf(ancestor Path) bool {
	return strings.HasPrefix(string(p), string(ancestor)+pathSeparator)
}

// DescendantPattern - LIKE-шаблон для всех потомков пути
func (p Path) DescendantPattern() string {
	return escapeLike(string(p)) + pathSeparator + "%"
}

// SubtreePatterns - LIKE-шаблоны потомков без маркера и с маркером.
// Потомок, помеченный из-за удалённого промежуточного узла, несёт маркер перед всем путём.
func (p Path) SubtreePatterns() (plain, marked string) {
	base := p.Undecorated()
	return escapeLike(base) + pathSeparator + "%", escapeLike(DeletedMarker+base) + pathSeparator + "%"
}

// MarkedPattern - LIKE-шаблон любого пути с маркером удаления
func MarkedPattern() string {
	return escapeLike(DeletedMarker) + "%"
}

func (p Path) String() string {
	return string(p)
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
